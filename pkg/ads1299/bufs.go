package ads1299

import "sync"

var (
	threeBytes = &sync.Pool{New: func() interface{} { return make([]byte, 3) }}
	txBufs     = &sync.Pool{New: func() interface{} { return make([]byte, 0, 3) }}
)

func get3Bytes() []byte {
	return threeBytes.Get().([]byte)
}

func put3Bytes(b []byte) {
	b[0], b[1], b[2] = 0, 0, 0
	threeBytes.Put(b)
}

func getTx() []byte {
	return txBufs.Get().([]byte)[:0]
}

func putTx(b []byte) {
	txBufs.Put(b[:0]) //nolint:staticcheck
}
