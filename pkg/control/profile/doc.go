/*
Package profile switches slew rates on a schedule.

A Profile is a named pair of rise and fall rates. A Scheduler applies
profiles to a RateSetter, usually a loop.Loop, either on demand or whenever
a cron expression fires:

	scheduler, err := profile.New(profile.Config{Target: l})
	if err != nil {
		return err
	}
	scheduler.Add("0 0 7 * * *", profile.Profile{Name: "day", RiseRate: 10, FallRate: 20})
	scheduler.Add("0 0 22 * * *", profile.Profile{Name: "night", RiseRate: 1, FallRate: 2})
	scheduler.Start()
	defer scheduler.Stop()

Cron expressions have six fields, seconds first, and also accept
descriptors such as @hourly or @every 15m. Use Validate to check an
expression before scheduling it.

Each scheduled switch runs with Config.Timeout. Failed switches are logged
and counted; the previous profile stays active.
*/
package profile
