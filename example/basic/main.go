package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/apmhq/agent-go"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s URL", os.Args[0])
	}

	_, err := apmagent.Init(apmagent.ClientOptions{
		ServiceName: "basic-example",
	})
	if err != nil {
		log.Fatalf("apmagent.Init: %s", err)
	}
	apmagent.DefaultClient.Start()
	defer apmagent.Close(30 * time.Second)

	ctx, _ := apmagent.BeginTransaction(context.Background(), "fetch", "custom", nil)
	defer apmagent.EndTransaction(ctx, "", "success")

	resp, err := http.Get(os.Args[1])
	if err != nil {
		apmagent.CaptureError(ctx, err)
		log.Printf("reported: %s", err)
		return
	}
	defer resp.Body.Close()
	for k, v := range resp.Header {
		for _, v1 := range v {
			fmt.Printf("%s=%s\n", k, v1)
		}
	}
}
