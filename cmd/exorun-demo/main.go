// Command exorun-demo wires the full runtime stack end to end: a
// wazeroengine.Engine backs a registry, a component is registered and
// instantiated with the reference host capabilities linked in, and a
// Peer/Server pair exchange one RPC call over an in-process transport.
//
// It exists to exercise the wiring, not to host real guest components —
// a hand-authored minimal wasm module has no exports, so the round trip
// it drives ends in a MethodNotFound reply. That failure path is exactly
// as real as a success reply would be: it still goes through the wire
// codec, the registry's name resolution, and rpcval's FailureReason
// encoding.
/*
 * Copyright (c) 2024-2026, exorun authors. All rights reserved.
 */
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/exorun/exorun/cmn/xlog"
	"github.com/exorun/exorun/engine"
	"github.com/exorun/exorun/host"
	"github.com/exorun/exorun/instance"
	"github.com/exorun/exorun/metrics"
	"github.com/exorun/exorun/peer"
	"github.com/exorun/exorun/registry"
	"github.com/exorun/exorun/server"
	"github.com/exorun/exorun/transport"
	"github.com/exorun/exorun/wazeroengine"
)

// emptyModule is the smallest valid wasm binary (magic + version, no
// sections). It stands in for a real guest component, which this demo
// has no way to embed.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func main() {
	name := flag.String("name", "demo-instance", "bound name for the local instance this demo creates")
	flag.Parse()

	if err := run(*name); err != nil {
		xlog.Errorf("exorun-demo: %v", err)
		os.Exit(1)
	}
}

func run(instanceName string) error {
	ctx := context.Background()

	eng, err := wazeroengine.New(ctx)
	if err != nil {
		return fmt.Errorf("construct engine: %w", err)
	}
	defer eng.Close(ctx)

	m := metrics.New()
	reg := registry.NewWithMetrics(eng, m)

	comp, err := eng.Compile(ctx, emptyModule)
	if err != nil {
		return fmt.Errorf("compile module: %w", err)
	}
	rcomp, err := reg.RegisterComponent(comp, emptyModule)
	if err != nil {
		return fmt.Errorf("register component: %w", err)
	}
	debugJSON, err := rcomp.DebugJSON()
	if err != nil {
		return fmt.Errorf("debug JSON: %w", err)
	}
	xlog.Infof("exorun-demo: registered component %s", debugJSON)

	logger := host.NewLogger()
	kv := host.NewKV()
	id, err := instance.NewBuilder(reg, rcomp.ID).
		Link(instance.HostLink(host.LoggingCapability, logger)).
		Link(instance.HostLink(host.KVCapability, kv)).
		Build(ctx)
	if err != nil {
		return fmt.Errorf("build instance: %w", err)
	}
	reg.BindName(instanceName, id)
	xlog.Infof("exorun-demo: instance %d bound as %q", id, instanceName)

	clientSide, serverSide := transport.NewDuplexPair()
	defer clientSide.Close()
	defer serverSide.Close()

	srv := server.New(reg)
	srvDone := make(chan error, 1)
	go func() { srvDone <- srv.Serve(ctx, serverSide) }()

	p := peer.NewWithMetrics("demo-client", clientSide, m)
	defer p.Close()

	_, callErr := p.Call(ctx, instanceName, "demo#greet", nil, nil, []engine.Type{{Kind: engine.TypeString}})
	if callErr != nil {
		xlog.Infof("exorun-demo: call returned %v (expected: the demo module exports nothing)", callErr)
	}

	// Closing the client's send side is what lets the server's Serve loop
	// observe end-of-stream on serverSide.Recv (it reads from the same
	// channel clientSide.Close shuts).
	clientSide.Close()
	<-srvDone

	xlog.Infof("exorun-demo: kv snapshot after run: %v", kv.Snapshot())
	xlog.Infof("exorun-demo: logger captured %d messages", len(logger.Logs()))
	return nil
}
