package saori

import "github.com/zeebo/xxh3"

// ServerSelector picks the index of the server that handles a request,
// given a routing key and the number of servers.
type ServerSelector func(key string, serverCount int) int

// DefaultServerSelector routes by Jump Hash over the xxh3 hash of the key.
// The Client uses the request Sender as key, so every request of one sender
// lands on the same module instance, and few senders move when servers are
// added or removed.
func DefaultServerSelector(key string, serverCount int) int {
	return jumpHash(xxh3.HashString(key), serverCount)
}

// staticSelector is used in tests to always select a specific server.
func staticSelector(index int) ServerSelector {
	return func(_ string, serverCount int) int {
		return index % serverCount
	}
}

// jumpHash is Google's Jump consistent hash (https://arxiv.org/abs/1406.2294),
// as in github.com/dgryski/go-jump.
func jumpHash(key uint64, numBuckets int) int {
	if numBuckets <= 0 {
		return 0
	}

	var b int64 = -1
	var j int64

	for j < int64(numBuckets) {
		b = j
		key = key*2862933555777941757 + 1
		j = int64(float64(b+1) * (float64(int64(1)<<31) / float64((key>>33)+1)))
	}

	return int(b)
}
