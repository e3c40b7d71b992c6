package source

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go/jetstream"
)

// errUndecodable marks a stored message whose block header cannot be read.
var errUndecodable = errors.New("undecodable block")

// heightAt returns the block height stored at seq.
type heightAt func(ctx context.Context, seq uint64) (uint64, error)

// seekHeight binary searches [firstSeq, lastSeq] for the earliest sequence
// holding a block at or above target. Heights grow with the sequence. When
// every stored block is below target the sequence after lastSeq is returned.
// Undecodable messages count as above target and missing ones as below it.
func seekHeight(ctx context.Context, target, firstSeq, lastSeq uint64, at heightAt) (uint64, error) {
	if firstSeq == 0 {
		firstSeq = 1
	}
	if target == 0 || firstSeq > lastSeq {
		return firstSeq, nil
	}

	l, r := firstSeq-1, lastSeq+1
	for l+1 < r {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		m := l + (r-l)/2
		h, err := at(ctx, m)
		switch {
		case errors.Is(err, errUndecodable):
			r = m
		case errors.Is(err, jetstream.ErrMsgNotFound):
			l = m
		case err != nil:
			return 0, err
		case h >= target:
			r = m
		default:
			l = m
		}
	}
	return r, nil
}
