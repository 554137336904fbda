package trainer

// Progress is a consistent view of the driver counters. Values published by
// the loop are immutable; Snapshot hands out copies.
type Progress struct {
	Data       DataStatus
	Status     RunStatus
	NetCreated bool
	Topology   string

	SampleIndex  int
	Epoch        int
	TrainSamples int
	// TrainError is the mean absolute error of the last trained sample.
	TrainError    float32
	PredictionOK  bool
	TrainAccuracy float64
	// ErrorHistory holds recent training errors, oldest first.
	ErrorHistory []float32

	TestIndex     int
	TestEpoch     int
	TestSamples   int
	TestError     float32
	TestMeanError float64
	TestAccuracy  float64
}

// Snapshot returns the latest published progress with the current statuses.
func (s *State) Snapshot() Progress {
	var p Progress
	if cur := s.progress.Load(); cur != nil {
		p = *cur
		p.ErrorHistory = append([]float32(nil), cur.ErrorHistory...)
	}
	p.Data = s.DataStatus()
	p.Status = s.Status()
	return p
}

func (s *State) publish() {
	train := s.trainRun.Peek()
	test := s.testRun.Peek()
	p := &Progress{
		Data:          s.DataStatus(),
		Status:        s.Status(),
		NetCreated:    s.net.Created(),
		SampleIndex:   s.sampleIndex,
		Epoch:         s.epoch,
		TrainSamples:  s.trainSamples,
		TrainError:    train.LastError,
		PredictionOK:  train.PredictionOK,
		TrainAccuracy: train.Accuracy,
		ErrorHistory:  train.History,
		TestIndex:     s.testIndex,
		TestEpoch:     s.testEpoch,
		TestSamples:   test.Samples,
		TestError:     test.LastError,
		TestMeanError: test.MeanError,
		TestAccuracy:  test.Accuracy,
	}
	if p.NetCreated {
		p.Topology = s.net.Topology().String()
	}
	s.progress.Store(p)
}
