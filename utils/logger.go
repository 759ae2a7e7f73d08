// utils/logger.go
package utils

import (
	"fmt"
	"log"
)

// Global verbose flag
var Verbose = true

// LogInfo logs an info message
func LogInfo(format string, args ...interface{}) {
	log.Printf("[INFO] "+format, args...)
}

// LogDebug logs a debug message if verbose mode is enabled
func LogDebug(format string, args ...interface{}) {
	if Verbose {
		log.Printf("[DEBUG] "+format, args...)
	}
}

// LogError logs an error message
func LogError(format string, args ...interface{}) {
	log.Printf("[ERROR] "+format, args...)
}

// SetVerbose sets the verbose logging mode
func SetVerbose(v bool) {
	Verbose = v
}

// GetVerbose returns the current verbose logging mode
func GetVerbose() bool {
	return Verbose
}

// PrintStartupMessage prints a formatted startup message
func PrintStartupMessage(port int, backend string) {
	fmt.Println("---------------------------------------------------")
	fmt.Printf("| Agri Supply Chain Node Started                   |\n")
	fmt.Printf("| Port: %-41d |\n", port)
	fmt.Printf("| Storage: %-38s |\n", backend)
	fmt.Printf("| Mode: %-41s |\n", fmt.Sprintf("HTTP Server (:%d)", port))
	fmt.Println("---------------------------------------------------")
}
