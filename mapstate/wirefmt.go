package mapstate

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/faithfuldb/colstate/bitpack"
	"github.com/faithfuldb/colstate/varint"
	"github.com/valyala/bytebufferpool"
	"golang.org/x/sys/unix"
)

var wordScratchPool bytebufferpool.Pool

// writeWordArray emits a var-int word count followed by that many
// big-endian 64-bit words, staging them through a pooled scratch buffer
// rather than allocating one per shard.
func writeWordArray(w io.Writer, arr *bitpack.Array) error {
	n := arr.NumWords()

	var hdr varint.Writer
	hdr.VInt(uint32(n))
	if _, err := w.Write(hdr.Bytes()); err != nil {
		return err
	}

	buf := wordScratchPool.Get()
	defer wordScratchPool.Put(buf)
	buf.Reset()

	var word [8]byte
	for i := 0; i < n; i++ {
		binary.BigEndian.PutUint64(word[:], arr.Word(i))
		buf.Write(word[:])
	}
	_, err := w.Write(buf.B)
	return err
}

// countingWriter tallies bytes written, feeding metrics.BytesWritten.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// adviseSequential hints the kernel that out will be read back
// sequentially once written, when out is a regular *os.File. Any error is
// ignored: the hint is an optimization, not a correctness requirement, and
// not every platform or file type supports it.
func adviseSequential(out io.Writer) {
	f, ok := out.(*os.File)
	if !ok {
		return
	}
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}
