package reports

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

type mergeDecision int

const (
	decisionInsert mergeDecision = iota
	decisionReplace
	decisionSkipPending
	decisionSkipStale
)

const inlinePhotoPrefix = "data:"

// resolveServerReport decides what an incoming server row does to the merged entry for its id.
// pendingAt is the timestamp of an unconfirmed local write, if any.
func resolveServerReport(existing *Report, pendingAt *time.Time, incoming Report) mergeDecision {
	if pendingAt != nil && incoming.Timestamp.Before(*pendingAt) {
		return decisionSkipPending
	}
	if existing == nil {
		return decisionInsert
	}
	if incoming.Timestamp.Before(existing.Timestamp) {
		return decisionSkipStale
	}
	if incoming.Timestamp.Equal(existing.Timestamp) && !winsTie(incoming, *existing) {
		return decisionSkipStale
	}
	return decisionReplace
}

// winsTie orders two versions carrying the same timestamp. The remote store rewrites inline photos
// into hosted URLs without touching the timestamp, so the version with more hosted photos wins; the
// encoded form breaks any remaining tie. Identical versions count as a win.
func winsTie(incoming, existing Report) bool {
	incomingHosted, existingHosted := hostedPhotos(incoming), hostedPhotos(existing)
	if incomingHosted != existingHosted {
		return incomingHosted > existingHosted
	}
	incomingKey, errIncoming := json.Marshal(incoming)
	existingKey, errExisting := json.Marshal(existing)
	if errIncoming != nil || errExisting != nil {
		return true
	}
	return bytes.Compare(incomingKey, existingKey) >= 0
}

func hostedPhotos(report Report) int {
	count := 0
	for _, slots := range [][PhotoSlots]*string{report.Photos.Before, report.Photos.After} {
		for _, ref := range slots {
			if ref != nil && *ref != "" && !strings.HasPrefix(*ref, inlinePhotoPrefix) {
				count++
			}
		}
	}
	return count
}

// confirmsPending reports whether the server row acknowledges the local write recorded at pendingAt.
func confirmsPending(pendingAt *time.Time, incoming Report) bool {
	if pendingAt == nil {
		return false
	}
	return !incoming.Timestamp.Before(*pendingAt)
}
