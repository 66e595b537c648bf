// Command check_translations is the CI gate: it runs "localesync check"
// with the given flags and exits non-zero on findings.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"localesync/cli"
	"localesync/utils"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "No .env file found, using environment variables: %v\n", err)
	}
	utils.InitLogger()
	defer utils.Logger.Sync()

	args := append([]string{"check"}, os.Args[1:]...)
	if err := cli.Execute(context.Background(), cli.Env{Logger: utils.Logger}, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		utils.Logger.Sync()
		os.Exit(1)
	}
}
