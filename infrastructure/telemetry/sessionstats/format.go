package sessionstats

import "fmt"

// Summary renders a one-line status for logs and the dashboard.
func Summary(capacity Capacity, s Snapshot) string {
	return fmt.Sprintf("players %d/%d, admitted %d, rejected %d, ended %d",
		capacity.ConnectionCount(), capacity.MaxPlayers(), s.Established, s.Rejected, s.Ended)
}
