package mocks

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name SnapshotStore --dir ../domain/teamstats --output domain/teamstats --outpkg teamstatsmock --filename snapshot_store_mock.go
