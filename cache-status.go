package catstatus

import "fmt"

type CacheStatusStatus string

const (
	CacheStatusHit CacheStatusStatus = "hit"
	CacheStatusFwd CacheStatusStatus = "fwd"
)

type CacheStatusFwdReason string

const (
	// The cache did not contain an image for the status code
	// and this request fetched it.
	CacheStatusFwdMiss CacheStatusFwdReason = "miss"

	// The cache did not contain an image for the status code,
	// and this request waited for a fetch started by another request.
	CacheStatusFwdShared CacheStatusFwdReason = "shared"
)

// CacheStatus describes how a lookup was answered.
// It is rendered like the Cache-Status header of RFC 9211.
type CacheStatus struct {
	status    CacheStatusStatus
	fwdReason CacheStatusFwdReason
	stored    bool
}

func (cs *CacheStatus) Hit() {
	cs.status = CacheStatusHit
}

func (cs *CacheStatus) Forward(reason CacheStatusFwdReason) {
	cs.status = CacheStatusFwd
	cs.fwdReason = reason
}

func (cs *CacheStatus) Stored() {
	cs.stored = true
}

func (cs CacheStatus) IsHit() bool {
	return cs.status == CacheStatusHit
}

func (cs CacheStatus) FwdReason() CacheStatusFwdReason {
	return cs.fwdReason
}

func (cs CacheStatus) String() string {
	status := fmt.Sprintf("CatStatus; %s", cs.status)
	if cs.status == CacheStatusFwd && cs.fwdReason != "" {
		status = fmt.Sprintf("%s=%s", status, cs.fwdReason)
	}
	if cs.stored {
		status = status + "; stored"
	}
	return status
}
