package funnel

import "time"

// timeNow is swapped in tests that pin the clock.
var timeNow = time.Now
