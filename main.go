package main

import (
	"fmt"
	"log"
	"os"

	"agentpipe/cmd"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	command := os.Args[1]
	switch command {
	case "run":
		pipelinePath := "pipeline.yml"
		if len(os.Args) >= 3 {
			pipelinePath = os.Args[2]
		}
		if err := cmd.Run(pipelinePath); err != nil {
			log.Fatalf("Pipeline failed: %v", err)
		}
	case "serve":
		if err := cmd.Serve(); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	case "check":
		if err := cmd.Check(); err != nil {
			log.Fatalf("Check failed: %v", err)
		}
	default:
		fmt.Println("Unknown command:", command)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: agentpipe <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run [pipeline.yml]   run a pipeline file")
	fmt.Println("  serve                start the HTTP server")
	fmt.Println("  check                verify the model backend is reachable")
}
