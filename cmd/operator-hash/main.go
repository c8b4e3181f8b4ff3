// Command operator-hash prints a bcrypt hash for OPERATOR_PASSWORD_HASH.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/example/stock-ledger/internal/auth"
)

func main() {
	cost := flag.Int("cost", auth.DefaultBcryptCost, "bcrypt cost")
	flag.Parse()

	var password string
	if flag.NArg() > 0 {
		password = flag.Arg(0)
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(os.Stderr, "usage: operator-hash [-cost n] <password>  (or pipe it on stdin)")
			os.Exit(2)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	if *cost < auth.MinOperatorCost {
		fmt.Fprintf(os.Stderr, "warning: cost %d is below %d, the api will refuse this hash\n", *cost, auth.MinOperatorCost)
	}
	hash, err := auth.HashPassword(password, *cost)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
