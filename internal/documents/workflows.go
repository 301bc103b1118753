package documents

import "trustline/portal-backend/pkg/workflows"

// uploadLifecycle tracks a document from signed URL to stored object.
var uploadLifecycle = workflows.NewStateMachine(map[Status][]Status{
	StatusPendingUpload: {StatusStored, StatusRemoved},
	StatusStored:        {StatusRemoved},
	StatusRemoved:       {},
})
