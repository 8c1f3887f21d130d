// Command dgramclient sends a single request to a datagram RPC server and
// prints the response, for manual testing against a running dgramserver.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/corvidlabs/dgramrpc/pkg/dgramclient"
)

func main() {
	socketPath := flag.String("socket", "/tmp/dgramrpc.sock", "server socket path")
	request := flag.String("request", "ping", "request name to send")
	argsJSON := flag.String("args", "{}", "JSON object of request arguments")
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout")
	flag.Parse()

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(*argsJSON), &args); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -args JSON: %v\n", err)
		os.Exit(1)
	}

	client, err := dgramclient.New(*socketPath, dgramclient.DefaultConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	resp, err := client.Send(ctx, *request, args, dgramclient.RequestOptions{Timeout: *timeout})
	if err != nil {
		fmt.Fprintf(os.Stderr, "request failed: %v\n", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Println(string(out))
}
