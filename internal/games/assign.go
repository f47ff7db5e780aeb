package games

import (
	"fmt"
	"math/rand"
)

// AssignRoles shuffles userIDs and deals roles from the quota table in the order Impostor, Detective,
// Sheriff, Engineer; everyone left is a Crewmate. The returned map has exactly one entry per user.
func AssignRoles(userIDs []int64, rng *rand.Rand) (map[int64]Role, error) {
	n := len(userIDs)
	if n < MinPlayers {
		return nil, fmt.Errorf("%w: %d joined, need %d", ErrNotEnoughPlayers, n, MinPlayers)
	}
	if n > MaxPlayers {
		return nil, fmt.Errorf("assign roles: %d players exceeds maximum %d", n, MaxPlayers)
	}
	quota, ok := QuotaForPlayerCount(n)
	if !ok || quota.Total() >= n {
		return nil, fmt.Errorf("assign roles: no valid quota for %d players", n)
	}

	shuffled := make([]int64, n)
	copy(shuffled, userIDs)
	rng.Shuffle(n, func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	roles := make(map[int64]Role, n)
	next := 0
	deal := func(role Role, count int) {
		for i := 0; i < count; i++ {
			roles[shuffled[next]] = role
			next++
		}
	}
	deal(RoleImpostor, quota.Impostors)
	deal(RoleDetective, quota.Detectives)
	deal(RoleSheriff, quota.Sheriffs)
	deal(RoleEngineer, quota.Engineers)
	for _, id := range shuffled[next:] {
		roles[id] = RoleCrewmate
	}
	return roles, nil
}
