package enums

type DeadLetterReason string

const (
	DeadLetterReasonPersistFailed DeadLetterReason = "persist_failed"
	DeadLetterReasonTimeout       DeadLetterReason = "timeout"
)

var validDeadLetterReasons = []DeadLetterReason{
	DeadLetterReasonPersistFailed,
	DeadLetterReasonTimeout,
}

func (r DeadLetterReason) IsValid() bool {
	for _, candidate := range validDeadLetterReasons {
		if candidate == r {
			return true
		}
	}
	return false
}
