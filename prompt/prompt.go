// Package prompt holds the fixed flowchart-to-code grading prompt. The
// text is versioned so regenerated rows can be traced to the prompt
// that produced them.
package prompt

const version = "v1"

const text = `You are an intelligent teaching assistant to an introductory
programming class. Study the handwritten flowchart image provided and
generate executable Python code from it.

Instructions:
- Produce clean, executable Python code.
- Map each symbol in the flowchart to exactly one line of Python.
- Preserve all original flaws, names, and ambiguities as-is.
- Follow the original logic flow strictly, including structural flaws
  or redundant checks.
- No code comments.
- No markdown or code fencing.
- Do not simplify the logic, even if it is inefficient or incorrect.
- Do not omit START/END, but do not translate them to code lines either.

Decision boxes starting with "if" translate to if statements; boxes with
a back-edge translate to while loops; a condition checked after at least
one pass translates to a do-while shape (while True with a break).

Output only the Python program.`

// Text returns the grading prompt sent with every flowchart.
func Text() string { return text }

// Version identifies the current prompt revision.
func Version() string { return version }
