// Package formation turns waiting queue blocks into balanced team proposals.
package formation

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/models"
)

// maxCandidates bounds the subset search for team modes.
const maxCandidates = 32

// WindowFunc returns the acceptable rating distance for a block right now.
type WindowFunc func(b *models.Block) int

// Proposal is a pair of teams built from whole blocks.
type Proposal struct {
	Mode models.Mode
	Red  []*models.Block
	Blue []*models.Block
}

// Blocks returns every block in the proposal, red first.
func (p Proposal) Blocks() []*models.Block {
	out := make([]*models.Block, 0, len(p.Red)+len(p.Blue))
	out = append(out, p.Red...)
	return append(out, p.Blue...)
}

// Form scans the pool in queue order and returns every proposal it can build.
// Blocks are consumed exclusively: once in a proposal a block is not
// reconsidered. The pool must be ordered oldest first.
func Form(mode models.Mode, pool []*models.Block, window WindowFunc) []Proposal {
	n := mode.TeamSize()
	if n == 0 || totalPlayers(pool) < 2*n {
		return nil
	}

	consumed := make(map[uuid.UUID]bool, len(pool))
	var proposals []Proposal
	for _, anchor := range pool {
		if consumed[anchor.ID] {
			continue
		}
		var (
			p  Proposal
			ok bool
		)
		if n == 1 {
			p, ok = formDuel(anchor, pool, consumed, window(anchor))
		} else {
			p, ok = formTeams(n, anchor, pool, consumed, window(anchor))
		}
		if !ok {
			continue
		}
		p.Mode = mode
		for _, b := range p.Blocks() {
			consumed[b.ID] = true
		}
		proposals = append(proposals, p)
	}
	return proposals
}

// formDuel pairs the anchor with the nearest-rated unconsumed block in its
// window. Ties go to the earlier block.
func formDuel(anchor *models.Block, pool []*models.Block, consumed map[uuid.UUID]bool, window int) (Proposal, bool) {
	var best *models.Block
	bestDiff := math.MaxInt
	for _, b := range pool {
		if b.ID == anchor.ID || consumed[b.ID] || b.Size() != 1 {
			continue
		}
		diff := abs(b.Rating() - anchor.Rating())
		if diff > window {
			continue
		}
		if diff < bestDiff {
			best, bestDiff = b, diff
		}
	}
	if best == nil {
		return Proposal{}, false
	}
	return Proposal{Red: []*models.Block{anchor}, Blue: []*models.Block{best}}, true
}

// formTeams searches the anchor's window for blocks that exactly fill 2n seats
// and can be split so every block lands whole on one team.
func formTeams(n int, anchor *models.Block, pool []*models.Block, consumed map[uuid.UUID]bool, window int) (Proposal, bool) {
	type cand struct {
		block *models.Block
		diff  int
		order int
	}
	var cands []cand
	for i, b := range pool {
		if b.ID == anchor.ID || consumed[b.ID] || b.Size() > n {
			continue
		}
		diff := abs(b.Rating() - anchor.Rating())
		if diff > window {
			continue
		}
		cands = append(cands, cand{b, diff, i})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].diff != cands[j].diff {
			return cands[i].diff < cands[j].diff
		}
		return cands[i].order < cands[j].order
	})
	if len(cands) > maxCandidates {
		cands = cands[:maxCandidates]
	}

	blocks := make([]*models.Block, len(cands))
	for i, c := range cands {
		blocks[i] = c.block
	}

	chosen := []*models.Block{anchor}
	var result Proposal
	found := false

	var search func(start, seats int) bool
	search = func(start, seats int) bool {
		if seats == 0 {
			red, blue, ok := Balance(n, chosen)
			if !ok {
				return false
			}
			result = orient(anchor, red, blue)
			found = true
			return true
		}
		for i := start; i < len(blocks); i++ {
			if blocks[i].Size() > seats {
				continue
			}
			chosen = append(chosen, blocks[i])
			if search(i+1, seats-blocks[i].Size()) {
				return true
			}
			chosen = chosen[:len(chosen)-1]
		}
		return false
	}
	search(0, 2*n-anchor.Size())
	return result, found
}

// Balance splits blocks totalling 2n players into two teams of n. Multi-player
// blocks are placed by trying every assignment; solo blocks are then drafted
// highest rating first onto the team with the lower cumulative rating. The
// split with the smallest average-rating gap wins.
func Balance(n int, blocks []*models.Block) (red, blue []*models.Block, ok bool) {
	var groups, solos []*models.Block
	for _, b := range blocks {
		if b.Size() > 1 {
			groups = append(groups, b)
		} else {
			solos = append(solos, b)
		}
	}
	sort.SliceStable(solos, func(i, j int) bool {
		return solos[i].Rating() > solos[j].Rating()
	})

	bestGap := math.Inf(1)
	for mask := 0; mask < 1<<len(groups); mask++ {
		var r, b []*models.Block
		rSize, bSize, rSum, bSum := 0, 0, 0, 0
		for i, g := range groups {
			if mask&(1<<i) != 0 {
				r = append(r, g)
				rSize += g.Size()
				rSum += sumRating(g)
			} else {
				b = append(b, g)
				bSize += g.Size()
				bSum += sumRating(g)
			}
		}
		if rSize > n || bSize > n {
			continue
		}
		for _, s := range solos {
			toRed := rSize < n && (bSize >= n || rSum <= bSum)
			if toRed {
				r = append(r, s)
				rSize++
				rSum += s.Rating()
			} else {
				b = append(b, s)
				bSize++
				bSum += s.Rating()
			}
		}
		if rSize != n || bSize != n {
			continue
		}
		gap := math.Abs(float64(rSum)/float64(n) - float64(bSum)/float64(n))
		if gap < bestGap {
			bestGap = gap
			red, blue, ok = r, b, true
		}
	}
	return red, blue, ok
}

// orient puts the anchor's team on red and keeps queue order within each team.
func orient(anchor *models.Block, red, blue []*models.Block) Proposal {
	for _, b := range blue {
		if b.ID == anchor.ID {
			red, blue = blue, red
			break
		}
	}
	return Proposal{Red: byEnqueue(red), Blue: byEnqueue(blue)}
}

func byEnqueue(blocks []*models.Block) []*models.Block {
	out := append([]*models.Block(nil), blocks...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EnqueuedAt.Before(out[j].EnqueuedAt)
	})
	return out
}

func sumRating(b *models.Block) int {
	sum := 0
	for _, e := range b.Entries {
		sum += e.Rating
	}
	return sum
}

func totalPlayers(pool []*models.Block) int {
	n := 0
	for _, b := range pool {
		n += b.Size()
	}
	return n
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
