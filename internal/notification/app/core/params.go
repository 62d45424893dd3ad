package core

const WaitTime = 10

type SubscriberParams struct {
	WorkerName  string
	Prefetch    int
	MetricsPort int
}
