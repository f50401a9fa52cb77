// Package share implements the recursive-halving (hypercube) all-gather
// engine: the heart of the library (spec §4.3). Given the L PointLinks
// assembled by a Topology, it exchanges doubling segments of an
// in-place buffer until every party holds every contribution.
package share

import (
	"context"
	"fmt"

	"github.com/kwil-collective/allgather/collective"
	"github.com/kwil-collective/allgather/transport"
)

// Share runs the all-gather over buf in place. buf must have length
// N*chunkSize, where N = 1<<len(links); slot myID (the chunkSize-byte
// range [myID*chunkSize, (myID+1)*chunkSize)) must already hold this
// party's contribution. After Share returns without error, every slot
// holds its owner's contribution, in id order.
//
// Rounds are strictly sequential (round d depends on round d-1's
// data); within a round, send and receive on links[d] proceed
// concurrently (spec §4.3 "Ordering and concurrency").
func Share(ctx context.Context, links []transport.Link, myID collective.ID, buf []byte, chunkSize int) error {
	_, _, _, err := run(ctx, links, myID, buf, chunkSize)
	return err
}

// run executes the schedule and additionally returns the final owned
// window, so that tests can assert the internal invariant described in
// spec §8 testable property 3 ("start == 0 and end == N*C for every
// party") without Share needing to expose that state in its public
// signature.
func run(ctx context.Context, links []transport.Link, myID collective.ID, buf []byte, chunkSize int) (start, end, partSize int, err error) {
	n := 1 << len(links)
	if len(buf) != n*chunkSize {
		panic(fmt.Sprintf("share: buffer length %d does not equal N*C = %d*%d", len(buf), n, chunkSize))
	}

	partSize = chunkSize
	start = int(myID) * chunkSize
	end = start + chunkSize

	for d, link := range links {
		var sendSeg, recvSeg []byte

		switch link.Role() {
		case transport.Server:
			end += partSize
			recvSeg = buf[end-partSize : end]
			sendSeg = buf[end-2*partSize : end-partSize]
		case transport.Client:
			start -= partSize
			recvSeg = buf[start : start+partSize]
			sendSeg = buf[start+partSize : start+2*partSize]
		}

		if err := link.Exchange(ctx, sendSeg, recvSeg); err != nil {
			return start, end, partSize, fmt.Errorf("share: round %d: %w", d, err)
		}

		partSize *= 2
	}

	return start, end, partSize, nil
}
