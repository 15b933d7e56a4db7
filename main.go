package main

import (
	"math/rand"
	"runtime"
	"time"

	"github.com/neuropipe/broker/cmd"
)

func main() {
	rand.Seed(time.Now().UnixNano())

	// Each connected session spends most of its time blocked on network IO in
	// the runtime netpoller, so a high GOMAXPROCS buys headroom for the burst
	// of goroutine scheduling around accept and publish fan-out.
	runtime.GOMAXPROCS(128)

	cmd.Execute()
}
