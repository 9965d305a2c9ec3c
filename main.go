package main

import (
	"log"
	"os"

	"bank-accounts/cmd"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cmd.Execute()
}
