package swarm

import "strings"

// Topic namespace under the pool identity. Inbound topics are subscribed;
// outbound topics are announce-only.
const (
	topicJobs       = "/jobs"
	topicClaims     = "/claims"
	topicProofs     = "/proofs"
	topicMiners     = "/miners"
	topicHeartbeats = "/heartbeats"

	topicJobsNew       = "/jobs/new"
	topicClaimAccepted = "/claims/accepted"
	topicClaimTimeout  = "/claims/timeout"
	topicProofAccepted = "/proofs/accepted"
	topicMinerJoined   = "/miners/joined"
	topicState         = "/state"
	topicEpochOpened   = "/epochs/opened"
	topicEpochSealed   = "/epochs/sealed"
)

func (c *Core) topic(suffix string) string {
	return c.Env.PoolENS + suffix
}

func (c *Core) inboundTopics() []string {
	return []string{
		c.topic(topicJobs),
		c.topic(topicClaims),
		c.topic(topicProofs),
		c.topic(topicMiners),
		c.topic(topicHeartbeats),
	}
}

func topicSuffix(topic, suffix string) bool {
	return strings.HasSuffix(topic, suffix)
}
