package pr

import "testing"

func TestParseRemoteURL(t *testing.T) {
	tests := []struct {
		name      string
		remote    string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{
			name:      "https with .git",
			remote:    "https://github.com/acme/widgets.git",
			wantOwner: "acme",
			wantRepo:  "widgets",
		},
		{
			name:      "https without .git",
			remote:    "https://github.com/acme/widgets",
			wantOwner: "acme",
			wantRepo:  "widgets",
		},
		{
			name:      "https trailing slash",
			remote:    "https://github.com/acme/widgets/",
			wantOwner: "acme",
			wantRepo:  "widgets",
		},
		{
			name:      "ssh scp style",
			remote:    "git@github.com:acme/widgets.git",
			wantOwner: "acme",
			wantRepo:  "widgets",
		},
		{
			name:      "ssh url style",
			remote:    "ssh://git@github.com/acme/widgets.git",
			wantOwner: "acme",
			wantRepo:  "widgets",
		},
		{
			name:      "enterprise host",
			remote:    "https://github.example.com/platform/infra.git",
			wantOwner: "platform",
			wantRepo:  "infra",
		},
		{
			name:      "dotted repo name",
			remote:    "git@github.com:acme/widgets.io.git",
			wantOwner: "acme",
			wantRepo:  "widgets.io",
		},
		{
			name:    "empty",
			remote:  "",
			wantErr: true,
		},
		{
			name:    "local path",
			remote:  "/srv/git/widgets.git",
			wantErr: true,
		},
		{
			name:    "garbage",
			remote:  "not a url",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, err := ParseRemoteURL(tt.remote)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s/%s", owner, repo)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRemoteURL() error = %v", err)
			}
			if owner != tt.wantOwner || repo != tt.wantRepo {
				t.Errorf("ParseRemoteURL() = %s/%s, want %s/%s", owner, repo, tt.wantOwner, tt.wantRepo)
			}
		})
	}
}
