package reports

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var propertyUnits = []string{"ULP Baso", "ULP Bukittinggi", "ULP Koto Tuo"}

var propertyEpoch = time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

// editHistory turns a sequence of touched ids into successive versions of the remote dataset. Every
// event is a later edit than the one before it.
func editHistory(ids []int) []Report {
	history := make([]Report, 0, len(ids))
	for index, raw := range ids {
		report := reportAt(
			ReportID(fmt.Sprintf("r%d", raw)),
			propertyUnits[raw%len(propertyUnits)],
			propertyEpoch.Add(time.Duration(index)*time.Minute),
		)
		report.Keypoint = fmt.Sprintf("version %d", index)
		history = append(history, report)
	}
	return history
}

// datasetAt is the remote dataset after the first cut events, one row per id.
func datasetAt(history []Report, cut int) []Report {
	if cut > len(history) {
		cut = len(history)
	}
	return ComputeView(history[:cut], ViewFilters{})
}

func propertyParameters() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	return parameters
}

func TestMergedCollectionHasUniqueIdentifiers(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("merged ids are unique", prop.ForAll(
		func(ids []int, cut int) bool {
			history := editHistory(ids)
			reconciler := newQuietReconciler(t, nil, &manualClock{now: propertyEpoch})
			reconciler.IngestServerSnapshot(history)
			reconciler.IngestServerSnapshot(datasetAt(history, cut))

			seen := make(map[ReportID]struct{})
			for _, report := range reconciler.Snapshot().Reports {
				if _, ok := seen[report.ID]; ok {
					return false
				}
				seen[report.ID] = struct{}{}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 5)),
		gen.IntRange(0, 40),
	))

	properties.TestingRun(t)
}

func TestIngestingSameSnapshotTwiceIsIdempotent(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("second identical poll changes nothing", prop.ForAll(
		func(ids []int, cut int) bool {
			history := editHistory(ids)
			reconciler := newQuietReconciler(t, nil, &manualClock{now: propertyEpoch})
			reconciler.IngestServerSnapshot(datasetAt(history, cut/2))

			snapshot := datasetAt(history, cut)
			first := reconciler.IngestServerSnapshot(snapshot)
			second := reconciler.IngestServerSnapshot(snapshot)
			return cmp.Diff(first.Reports, second.Reports) == ""
		},
		gen.SliceOf(gen.IntRange(0, 5)),
		gen.IntRange(0, 40),
	))

	properties.TestingRun(t)
}

func TestOverlappingPollsCommute(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("merge(A,B) equals merge(B,A) for versions of one dataset", prop.ForAll(
		func(ids []int, cutA int, cutB int) bool {
			history := editHistory(ids)
			snapshotA := datasetAt(history, cutA)
			snapshotB := datasetAt(history, cutB)

			forward := newQuietReconciler(t, nil, &manualClock{now: propertyEpoch})
			forward.IngestServerSnapshot(snapshotA)
			forwardState := forward.IngestServerSnapshot(snapshotB)

			backward := newQuietReconciler(t, nil, &manualClock{now: propertyEpoch})
			backward.IngestServerSnapshot(snapshotB)
			backwardState := backward.IngestServerSnapshot(snapshotA)

			return cmp.Diff(forwardState.Reports, backwardState.Reports) == ""
		},
		gen.SliceOf(gen.IntRange(0, 5)),
		gen.IntRange(0, 40),
		gen.IntRange(0, 40),
	))

	properties.TestingRun(t)
}

func TestSameTimestampVersionsCommute(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())
	inline := "data:image/jpeg;base64,AAAA"
	hosted := "https://drive.example.com/photo"

	// Each flag picks an inline or hosted reference for one slot of one version.
	version := func(flags []bool, keypoint string) Report {
		report := reportAt("same", "ULP Baso", propertyEpoch)
		report.Keypoint = keypoint
		for slot, isHosted := range flags {
			if slot >= PhotoSlots {
				break
			}
			ref := inline
			if isHosted {
				ref = hosted
			}
			report.Photos.Before[slot] = &ref
		}
		return report
	}

	properties.Property("equal timestamps resolve independently of poll order", prop.ForAll(
		func(flagsA []bool, flagsB []bool, keypointA string, keypointB string) bool {
			a := version(flagsA, keypointA)
			b := version(flagsB, keypointB)

			forward := newQuietReconciler(t, nil, &manualClock{now: propertyEpoch})
			forward.IngestServerSnapshot([]Report{a})
			forwardState := forward.IngestServerSnapshot([]Report{b})

			backward := newQuietReconciler(t, nil, &manualClock{now: propertyEpoch})
			backward.IngestServerSnapshot([]Report{b})
			backwardState := backward.IngestServerSnapshot([]Report{a})

			return cmp.Diff(forwardState.Reports, backwardState.Reports) == ""
		},
		gen.SliceOf(gen.Bool()),
		gen.SliceOf(gen.Bool()),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestPendingWriteIsNeverOverwrittenByOlderRows(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("pending local write survives older server rows", prop.ForAll(
		func(ids []int, target int, cut int) bool {
			history := editHistory(ids)
			reconciler := newQuietReconciler(t, nil, &manualClock{now: propertyEpoch})
			reconciler.IngestServerSnapshot(datasetAt(history, cut))

			local := reportAt(ReportID(fmt.Sprintf("r%d", target)), "ULP Baso", propertyEpoch.Add(24*time.Hour))
			local.Keypoint = "local edit"
			if _, err := reconciler.ApplyLocalWrite(local); err != nil {
				return false
			}

			state := reconciler.IngestServerSnapshot(history)
			for _, report := range state.Reports {
				if report.ID == local.ID {
					return report.Keypoint == "local edit" && report.Timestamp.Equal(local.Timestamp)
				}
			}
			return false
		},
		gen.SliceOf(gen.IntRange(0, 5)),
		gen.IntRange(0, 5),
		gen.IntRange(0, 40),
	))

	properties.TestingRun(t)
}

func TestUnitScopeBoundsEveryView(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("scoped views only contain the scoped unit", prop.ForAll(
		func(ids []int, scopeIndex int, filterIndex int) bool {
			scope := propertyUnits[scopeIndex]
			view := ComputeView(editHistory(ids), ViewFilters{
				UnitScope:  scope,
				UnitFilter: propertyUnits[filterIndex],
			})
			for _, report := range view {
				if report.Unit != scope {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 8)),
		gen.IntRange(0, len(propertyUnits)-1),
		gen.IntRange(0, len(propertyUnits)-1),
	))

	properties.TestingRun(t)
}
