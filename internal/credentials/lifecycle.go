package credentials

import "trustline/portal-backend/pkg/workflows"

// Lifecycle is the status machine every credential kind follows.
var Lifecycle = workflows.NewStateMachine(map[Status][]Status{
	StatusPending:  {StatusVerified, StatusRejected},
	StatusVerified: {},
	StatusRejected: {},
})
