package language

import "strings"

const transcribeInstruction = `Transcribe the spoken audio into Urdu script.
Rules:
- Write everything in Urdu script by default.
- Keep English terms and names in their original Latin script, inline.
- Reproduce any Arabic recitation (for example Quranic verses) verbatim in Arabic script.
- Output only the transcription, with no commentary or labels.`

const summarizeInstruction = `Summarize the following voice notes into a short,
faithful abstract in the same language mix as the notes. Output only the
summary text.`

const answerInstruction = `You are answering questions about a user's voice
notes. Use only the transcript provided below. Answer in the language of the
question, concisely. If the transcript does not contain the answer, say so.`

const segmentSeparator = "\n\n---\n\n"

func summarizePrompt(texts []string) string {
	var b strings.Builder
	b.WriteString(summarizeInstruction)
	b.WriteString("\n\n")
	b.WriteString(strings.Join(texts, segmentSeparator))
	return b.String()
}

func answerPrompt(contextText, question string) string {
	var b strings.Builder
	b.WriteString(answerInstruction)
	b.WriteString("\n\nTranscript:\n")
	b.WriteString(contextText)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
