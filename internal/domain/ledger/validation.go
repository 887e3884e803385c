package ledger

// ValidateStart checks the arguments of start_focus_session in the
// order the program reports them.
func ValidateStart(stake, durationMinutes uint64, tasks []Task) error {
	if stake < MinStake {
		return ErrStakeTooLow
	}
	if durationMinutes < MinDurationMinutes || durationMinutes > MaxDurationMinutes {
		return ErrInvalidDuration
	}
	return ValidateTasks(tasks)
}

// ValidateTasks checks the checklist bounds.
func ValidateTasks(tasks []Task) error {
	if len(tasks) == 0 || len(tasks) > MaxTasks {
		return ErrInvalidTasks
	}
	for _, t := range tasks {
		if len(t.Description) > MaxTaskDescriptionBytes {
			return ErrInvalidTasks
		}
	}
	return nil
}
