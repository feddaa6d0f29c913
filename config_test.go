package raft

import "testing"

func TestConfigurationQuorum(t *testing.T) {
	cases := []struct {
		nVoting int
		want    int
	}{
		{1, 1},
		{2, 2},
		{3, 2},
		{4, 3},
		{5, 3},
	}
	for _, c := range cases {
		servers := make([]Server, c.nVoting)
		for i := range servers {
			servers[i] = Server{ID: uint64(i + 1), Voting: true}
		}
		cfg, err := NewConfiguration(servers...)
		if err != nil {
			t.Fatalf("NewConfiguration: %v", err)
		}
		if got := cfg.Quorum(); got != c.want {
			t.Errorf("nVoting=%d: Quorum() = %d, want %d", c.nVoting, got, c.want)
		}
	}
}

func TestConfigurationAddDuplicate(t *testing.T) {
	cfg, err := NewConfiguration(Server{ID: 1, Voting: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.Add(1, "addr", false); err == nil {
		t.Fatal("expected error adding duplicate id")
	}
}

func TestConfigurationRemoveNotFound(t *testing.T) {
	cfg, err := NewConfiguration(Server{ID: 1, Voting: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.Remove(99); err == nil {
		t.Fatal("expected error removing unknown id")
	}
}

func TestConfigurationImmutableBetweenMutations(t *testing.T) {
	cfg, err := NewConfiguration(Server{ID: 1, Voting: true})
	if err != nil {
		t.Fatal(err)
	}
	next, err := cfg.Add(2, "addr", true)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.NVoting() != 1 {
		t.Fatalf("original configuration mutated: NVoting() = %d", cfg.NVoting())
	}
	if next.NVoting() != 2 {
		t.Fatalf("new configuration missing addition: NVoting() = %d", next.NVoting())
	}
}

func TestConfigurationSetVoting(t *testing.T) {
	cfg, err := NewConfiguration(Server{ID: 1, Voting: true}, Server{ID: 2, Voting: false})
	if err != nil {
		t.Fatal(err)
	}
	next, err := cfg.SetVoting(2, true)
	if err != nil {
		t.Fatal(err)
	}
	s, _ := next.Get(2)
	if !s.Voting {
		t.Fatal("expected server 2 to be voting after SetVoting")
	}
	orig, _ := cfg.Get(2)
	if orig.Voting {
		t.Fatal("original configuration mutated by SetVoting")
	}
}
