package record

// Status is the lifecycle state discriminator of a submission record.
// It only ever advances forward; CANNOT_PROCESS is absorbing.
type Status string

const (
	StatusNew            Status = "NEW"
	StatusGeminiQueued   Status = "GEMINI_QUEUED"
	StatusGeminiDone     Status = "GEMINI_DONE"
	StatusJudgeSubmitted Status = "JUDGE_SUBMITTED"
	StatusVerdictReady   Status = "VERDICT_READY"
	StatusCannotProcess  Status = "CANNOT_PROCESS"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusGeminiQueued, StatusGeminiDone,
		StatusJudgeSubmitted, StatusVerdictReady, StatusCannotProcess:
		return true
	}
	return false
}
