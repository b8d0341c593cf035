package types

// Version is the canonical project version.
// The CLI, the chunk export format and the notification payloads share this
// version per the lockstep versioning policy.
const Version = "0.1.0"
