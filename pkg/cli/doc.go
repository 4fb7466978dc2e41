// Package cli implements entitlectl, the operator command line for the
// permission engine.
//
// Commands talk to the configured store directly, reading the same ENTITLE_*
// environment as the server:
//
//	entitlectl migrate                 # apply Postgres migrations
//	entitlectl migrate -list           # show known migrations
//	entitlectl seed                    # upsert tiers, permissions, catalog
//	entitlectl catalog -out catalog.yaml
//	entitlectl check -user u1 -org o1 -code export.csv
//	entitlectl permissions -user u1 -org o1 -json
//	entitlectl refresh -membership m1
//	entitlectl sweep -batch 1000
//
// check exits non-zero when the permission is denied, so it can gate scripts.
package cli
