// Package supervisor keeps a fixed set of transcoding slots alive.
//
// Slot i runs one process that writes an HLS playlist and segments into
// Root/stream<i>. Every slot has its own monitor goroutine:
//
//	starting -> running -> exited -> restarting -> starting ...
//
// A process that exits for any reason is relaunched after the backoff
// delay. Slots are independent: killing slot 2 never touches the PID or
// restart count of any other slot. Stop cancels every slot, which sends
// SIGINT to each process group and SIGKILL after GracefulTimeout.
//
//	sup, err := supervisor.New(supervisor.Options{
//	    Count:  6,
//	    Root:   "/var/lib/camsync/hls",
//	    Source: func(int) supervisor.Source { return supervisor.Source{URI: url} },
//	})
//	err = sup.Start(ctx)
//	defer sup.Stop()
package supervisor
