// Component for caching arbitrary data (as JSON strings) with a fixed TTL and purging.
//
// Includes an interface and implementations using redis and in-process memory.
//
// The moderation pipeline uses this to cache URL threat verdicts and image
// classifier responses, keeping latency and third-party load down.
package cachestore
