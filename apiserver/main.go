package main

import (
	"log"

	"github.com/trackdle/trackdle/internal/version"
)

func main() {
	log.Printf(
		"Starting Trackdle API Server -- version %s -- commit %s",
		version.Version(),
		version.Commit(),
	)

	apiServer, err := getAPIServerFromEnvironment()
	if err != nil {
		log.Fatal(err)
	}

	log.Println(apiServer.ListenAndServe())
}
