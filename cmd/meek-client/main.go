/*
 * Copyright (c) 2014, Yawning Angel <yawning at torproject dot org>
 * All rights reserved.
 *
 * Redistribution and use in source and binary forms, with or without
 * modification, are permitted provided that the following conditions are met:
 *
 *  * Redistributions of source code must retain the above copyright notice,
 *    this list of conditions and the following disclaimer.
 *
 *  * Redistributions in binary form must reproduce the above copyright notice,
 *    this list of conditions and the following disclaimer in the documentation
 *    and/or other materials provided with the distribution.
 *
 * THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
 * AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
 * IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
 * ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
 * LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
 * CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
 * SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
 * INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
 * CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
 * ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
 * POSSIBILITY OF SUCH DAMAGE.
 */

// meek-client runs a standalone meek tunnel: it binds a local loopback port
// and forwards every connection through HTTP(S) POST exchanges to a relay,
// optionally via a fronting CDN.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/obfsmeek/meekclient"
	"github.com/obfsmeek/meekclient/csrand"
)

func main() {
	var (
		fronted        = flag.Bool("fronted", false, "use domain fronting")
		frontingDomain = flag.String("front-domain", "", "TLS SNI / URL host of the fronting CDN (fronted mode)")
		frontingHost   = flag.String("front-host", "", "HTTP Host header selecting the relay behind the front (fronted mode)")
		relayHost      = flag.String("relay-host", "", "relay hostname (unfronted mode)")
		relayPort      = flag.Int("relay-port", 443, "relay port (unfronted mode)")
		target         = flag.String("target", "", "host:port the relay should connect to on success")
		sessionID      = flag.String("session-id", "", "session identifier; a random one is generated if empty")
		publicKey      = flag.String("public-key", "", "relay's base64-encoded NaCl box public key")
		keyword        = flag.String("obfuscation-keyword", "", "optional cookie obfuscation keyword")
	)
	flag.Parse()

	mode := meek.Unfronted
	if *fronted {
		mode = meek.Fronted
	}

	id := *sessionID
	if id == "" {
		id = randomSessionID()
	}

	client, err := meek.New(meek.Config{
		Mode:                     mode,
		SessionID:                id,
		TargetAddress:            *target,
		RecipientPublicKeyBase64: *publicKey,
		ObfuscationKeyword:       *keyword,
		FrontingDomain:           *frontingDomain,
		FrontingHost:             *frontingHost,
		RelayHost:                *relayHost,
		RelayPort:                *relayPort,
		Logger:                   meek.NewStdLogger(log.New(os.Stderr, "", log.LstdFlags)),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "meek-client: %v\n", err)
		os.Exit(1)
	}

	if err := client.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "meek-client: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("meek-client: listening on 127.0.0.1:%d\n", client.LocalPort())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	client.Stop()
}

func randomSessionID() string {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	buf := make([]byte, 16)
	for i := range buf {
		buf[i] = alphabet[csrand.IntRange(0, len(alphabet)-1)]
	}
	return string(buf)
}
