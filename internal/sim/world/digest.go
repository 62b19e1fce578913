package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"tattletale/internal/sim/kernel"
)

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

// chainDigest folds one tick's kernels into the running digest. Equal seeds,
// settings and catalogs produce equal chains.
func chainDigest(prev string, tick int, records []kernel.Record) string {
	h := sha256.New()
	var tmp [8]byte

	h.Write([]byte(prev))
	digestWriteI64(h, &tmp, int64(tick))
	digestWriteI64(h, &tmp, int64(len(records)))
	for i := range records {
		digestRecord(h, &tmp, &records[i])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func digestRecord(h hashWriter, tmp *[8]byte, r *kernel.Record) {
	digestWriteI64(h, tmp, int64(r.ID))
	digestWriteI64(h, tmp, int64(r.Tick))
	digestWriteString(h, tmp, r.Kind)
	digestWriteI64(h, tmp, int64(r.Owner))
	digestWriteInts(h, tmp, r.Reasons)
	digestWriteString(h, tmp, r.Tag)
	digestWriteU64(h, tmp, math.Float64bits(r.Value))
	digestWriteI64(h, tmp, int64(r.Target))
	digestWriteI64(h, tmp, int64(r.Definition))
	digestWriteU64(h, tmp, math.Float64bits(r.Chance))
	digestWriteInts(h, tmp, r.Participants)
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWriteString(h hashWriter, tmp *[8]byte, s string) {
	digestWriteU64(h, tmp, uint64(len(s)))
	h.Write([]byte(s))
}

func digestWriteInts(h hashWriter, tmp *[8]byte, xs []int) {
	digestWriteU64(h, tmp, uint64(len(xs)))
	for _, x := range xs {
		digestWriteI64(h, tmp, int64(x))
	}
}
