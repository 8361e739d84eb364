package diarize

import "sort"

// MinOverlap is the minimum turn/segment overlap, in seconds, below which
// a speaker assignment is rejected as a low-confidence boundary match.
const MinOverlap = 0.3

// AssignSpeaker finds the diarization turn with the largest overlap with
// the segment and returns its speaker label, or empty if no turn matches.
//
// Ties keep the first-encountered turn, so callers must pass turns in a
// stable order (SortTurns). A best overlap below MinOverlap is rejected,
// except for segments whose own duration is at or below the floor: such a
// segment can never achieve a larger overlap, so it keeps its best match.
func AssignSpeaker(segmentStart, segmentEnd float64, turns []Turn) string {
	if len(turns) == 0 {
		return ""
	}

	var best Turn
	bestOverlap := 0.0
	found := false
	for _, turn := range turns {
		lo := segmentStart
		if turn.StartTime > lo {
			lo = turn.StartTime
		}
		hi := segmentEnd
		if turn.EndTime < hi {
			hi = turn.EndTime
		}
		overlap := hi - lo
		if overlap > bestOverlap {
			bestOverlap = overlap
			best = turn
			found = true
		}
	}
	if !found {
		return ""
	}

	segDuration := segmentEnd - segmentStart
	if bestOverlap < MinOverlap && segDuration > MinOverlap {
		return ""
	}
	return best.Speaker
}

// SortTurns orders turns by start time, then end time, giving AssignSpeaker
// the deterministic iteration order its tie-break depends on.
func SortTurns(turns []Turn) {
	sort.Slice(turns, func(i, j int) bool {
		if turns[i].StartTime != turns[j].StartTime {
			return turns[i].StartTime < turns[j].StartTime
		}
		return turns[i].EndTime < turns[j].EndTime
	})
}
