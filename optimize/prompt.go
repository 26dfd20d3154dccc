package optimize

// CompactionPromptTemplate is the user prompt sent to the model when
// rewriting a room's notepad. The %s placeholder receives the current
// notes joined one per line. The response must come back as plain text,
// one note per line, so it can replace the log directly.
const CompactionPromptTemplate = `You are an AI assistant helping another AI agent manage and optimize its long-term memory stored in a notepad.

Your task is to clean, compress, and optimize the following notepad entries from a specific live stream room. Think of this as editing and cleaning up the agent's memory.

Guidelines:

1. Compress and merge: combine related notes into concise bullet points.
2. Prioritize key information:
   - Direct behavioral instructions or rules (how to respond, how fast to chat, known usernames).
   - Important facts about the streamer or regular viewers (preferences, repeated topics).
   - Promises or actions the agent has previously made.
3. Refine language: shorten and simplify wording without losing meaning. Remove filler words.
4. Remove redundancy: delete repeated or duplicate information.
5. Filter out minor details: remove outdated or trivial observations unless they reflect a clear pattern. When unsure, lean toward keeping it, but compress it.
6. Keep plain text format: output plain text only. One note per line. No JSON, explanations, or extra formatting.

Original notepad:
--- START NOTES ---
%s
--- END NOTES ---

Optimized notepad (output one note per line):`
