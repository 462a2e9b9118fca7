package config

import "time"

const (
	// Queue
	DefaultQueueTTL      = 30 * time.Minute
	DefaultSweepInterval = 30 * time.Second
	SweepLockKey         = "matching:reaper:lock"

	// Session
	DefaultSessionTTL      = 24 * time.Hour
	DefaultChannelIDPrefix = "dm"
	DefaultChannelIDMaxLen = 30

	// Rate limit (per member, on match endpoints)
	DefaultMatchRequestsPerMinute = 30
	DefaultMatchRequestBurst      = 5

	// Identity tokens minted by the admin tool
	DefaultTokenTTL = 72 * time.Hour

	// Events
	MemberChannelPrefix  = "match:member:"
	DefaultAMQPExchange  = "matching"
	DefaultEventProducer = "dailymatch-backend"
)

// DefaultRanks are the rank values the Rank Verifier is known to assign.
var DefaultRanks = []string{"Bronze", "Silver", "Gold", "Platinum", "Diamond"}
