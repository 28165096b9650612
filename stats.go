package offheap

// Stats summarizes the size of a collection. Byte counts are the encoded
// sizes of keys and values and exclude engine overhead.
type Stats struct {
	Entries    int
	KeyBytes   int64
	ValueBytes int64
}

func (s *Stats) TotalBytes() int64 {
	return s.KeyBytes + s.ValueBytes
}

func (s *Stats) add(k, v []byte) {
	s.Entries++
	s.KeyBytes += int64(len(k))
	s.ValueBytes += int64(len(v))
}

func (s *Stats) sub(k, v []byte) {
	s.Entries--
	s.KeyBytes -= int64(len(k))
	s.ValueBytes -= int64(len(v))
}

func (s *Stats) merge(o Stats) {
	s.KeyBytes += o.KeyBytes
	s.ValueBytes += o.ValueBytes
}
