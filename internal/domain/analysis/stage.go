package analysis

// Stage is a step of the analysis request lifecycle.
//
//	Received -> Predicting -> PredictFailed
//	                       -> Predicted -> Persisting -> PersistRejected
//	                                                  -> PersistFailed
//	                                                  -> Completed
type Stage string

const (
	StageReceived        Stage = "received"
	StagePredicting      Stage = "predicting"
	StagePredictFailed   Stage = "predict_failed"
	StagePredicted       Stage = "predicted"
	StagePersisting      Stage = "persisting"
	StagePersistRejected Stage = "persist_rejected"
	StagePersistFailed   Stage = "persist_failed"
	StageCompleted       Stage = "completed"
)

// Terminal reports whether no transition leaves s.
func (s Stage) Terminal() bool {
	switch s {
	case StagePredictFailed, StagePersistRejected, StagePersistFailed, StageCompleted:
		return true
	}
	return false
}

var transitions = map[Stage][]Stage{
	StageReceived:   {StagePredicting},
	StagePredicting: {StagePredictFailed, StagePredicted},
	StagePredicted:  {StagePersisting},
	StagePersisting: {StagePersistRejected, StagePersistFailed, StageCompleted},
}

// CanTransition reports whether next may follow s.
func (s Stage) CanTransition(next Stage) bool {
	for _, n := range transitions[s] {
		if n == next {
			return true
		}
	}
	return false
}
