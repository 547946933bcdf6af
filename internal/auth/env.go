package auth

import (
	"os"
	"time"
)

// swapped in tests
var (
	getenv = os.Getenv
	now    = time.Now
)
