package extraction

import (
	"fmt"
	"strings"
)

const factExtractionPrompt = `Extract durable facts worth remembering from this conversation about the %s project.

Categorize each fact:
- DECISION: Architectural choices, library selections, design patterns, preferences. WHY something was chosen matters more than WHAT.
- LEARNING: Bug root causes and fixes, gotchas discovered, workarounds, performance findings.
- DETAIL: File paths, API signatures, config values that are project-specific conventions.

Skip anything that fails this test: "Would this still be useful 30 days from now?"

Do not extract:
- Task completion status ("done", "all tests pass", "deployed successfully")
- Commit hashes, PR numbers, or branch names
- Counts or metrics ("44 tests", "5 files changed")
- Session-specific context ("currently working on...", "next step is...")
- Generic programming knowledge any developer would know

Output a JSON array of objects: {"category": "decision"|"learning"|"detail", "text": "..."}.`

const factExtractionPromptAggressive = `Extract durable facts worth remembering from this conversation about the %s project. The context window is about to compact, so err toward keeping anything that might matter later.

Categorize each fact:
- DECISION: Architectural choices, library selections, design patterns, preferences.
- LEARNING: Bug root causes and fixes, gotchas discovered, workarounds, performance findings.
- DETAIL: File paths, API signatures, config values that are project-specific conventions.

Do not extract:
- Session state ("currently working on...", "next step is...")
- Commit hashes
- Counts or metrics
- Generic programming knowledge any developer would know

Output a JSON array of objects: {"category": "decision"|"learning"|"detail", "text": "..."}.`

const audnPrompt = `You are a memory manager. Given newly extracted facts and similar existing memories, decide per fact whether to ADD, UPDATE an existing memory, DELETE an existing memory this supersedes, or NOOP (duplicate of an existing memory).

Facts:
%s

Similar existing memories per fact index:
%s

Output a JSON array of decisions. Each decision must have:
- "action": "ADD" | "UPDATE" | "DELETE" | "NOOP"
- "fact_index": index of the fact in the input array
- For UPDATE: "old_id" (int) and "new_text" (string)
- For DELETE: "old_id" (int)
- For NOOP: "existing_id" (int)`

func factExtractionSystemPrompt(context, source string) string {
	project := source
	if idx := strings.LastIndex(source, "/"); idx != -1 {
		project = source[idx+1:]
	}
	if project == "" {
		project = "this"
	}
	tmpl := factExtractionPrompt
	if context == "pre_compact" {
		tmpl = factExtractionPromptAggressive
	}
	return fmt.Sprintf(tmpl, project)
}
