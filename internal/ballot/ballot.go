// Package ballot defines the identity and ordering primitives shared by
// every Paxos role: role identifiers, ballot numbers, and slot numbers.
package ballot

import "fmt"

// RoleID is a process-unique integer assigned to a role instance at
// startup. It is carried on every message as the sender's identity and,
// for proposers, doubles as the ballot tiebreaker.
type RoleID uint32

// Slot names an instance of basic Paxos within the replicated log. Slot 0
// is the first slot.
type Slot uint64

// Number is a ballot number: a (round, proposer) pair ordered
// lexicographically, round first. Round 0 is reserved to mean "no
// ballot"; Number{} is therefore always the lowest possible ballot.
type Number struct {
	Round      uint32
	ProposerID RoleID
}

// Zero is the distinguished "no ballot" value.
var Zero = Number{}

// IsZero reports whether n is the reserved "no ballot" value.
func (n Number) IsZero() bool {
	return n.Round == 0
}

// Less reports whether n sorts strictly before other: first by round,
// then by proposer id as a tiebreaker so that ballots minted by distinct
// proposers are never equal.
func (n Number) Less(other Number) bool {
	if n.Round != other.Round {
		return n.Round < other.Round
	}
	return n.ProposerID < other.ProposerID
}

// Greater reports whether n sorts strictly after other.
func (n Number) Greater(other Number) bool {
	return other.Less(n)
}

// GreaterOrEqual reports whether n sorts at or after other.
func (n Number) GreaterOrEqual(other Number) bool {
	return !n.Less(other)
}

// Equal reports whether n and other are the same ballot.
func (n Number) Equal(other Number) bool {
	return n == other
}

// Next returns the lowest ballot, minted for proposerID, whose round is
// strictly greater than highestRoundSeen.
// Callers pass the highest round observed so far for the slot in
// question; Next always produces round+1 so repeated calls by the same
// proposer strictly increase.
func Next(highestRoundSeen uint32, proposerID RoleID) Number {
	return Number{Round: highestRoundSeen + 1, ProposerID: proposerID}
}

func (n Number) String() string {
	return fmt.Sprintf("(round=%d, proposer=%d)", n.Round, n.ProposerID)
}
