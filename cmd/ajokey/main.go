// Command ajokey hashes a scheduler API key for AJO_AUTH_API_KEY_HASH.
//
//	openssl rand -hex 32 | tee scheduler.key | ajokey
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mmynk/ajo/internal/auth"
	"github.com/mmynk/ajo/pkg/logging"
)

func main() {
	logger := logging.Setup("info")

	key, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && key == "" {
		logger.Error("Failed to read key from stdin", "error", err)
		os.Exit(1)
	}

	hash, err := auth.HashAPIKey(strings.TrimSpace(key))
	if err != nil {
		logger.Error("Failed to hash key", "error", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
