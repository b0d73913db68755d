package config

import (
    "os"
    "strconv"
    "time"
)

// Helper functions shared by config.go, cache.go and redis.go.

func getenv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func envBool(k string, d bool) bool {
    v := os.Getenv(k)
    if v == "" { return d }
    switch v {
    case "1","true","TRUE","True","yes","YES","on","ON": return true
    case "0","false","FALSE","False","no","NO","off","OFF": return false
    }
    return d
}

func envInt(k string, d int) int {
    v := os.Getenv(k); if v == "" { return d }
    if n, err := strconv.Atoi(v); err == nil { return n }
    return d
}

func envDur(k string, d time.Duration) time.Duration {
    v := os.Getenv(k); if v == "" { return d }
    if dur, err := time.ParseDuration(v); err == nil { return dur }
    return d
}

// envClock reads an HH:MM wall-clock time as an offset from midnight.
func envClock(k string, d time.Duration) time.Duration {
    v := os.Getenv(k); if v == "" { return d }
    t, err := time.Parse("15:04", v)
    if err != nil { return d }
    return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
}
