package pgtool

import "strconv"

// ConnParams holds libpq connection parameters for one side of a clone.
// Zero values mean "not set": the tool falls back to its ambient default
// (PGHOST, PGUSER, ~/.pgpass, ...), never to an empty string.
type ConnParams struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
}

// Merge returns p with every unset field taken from defaults.
func (p ConnParams) Merge(defaults ConnParams) ConnParams {
	out := p
	if out.Username == "" {
		out.Username = defaults.Username
	}
	if out.Password == "" {
		out.Password = defaults.Password
	}
	if out.Host == "" {
		out.Host = defaults.Host
	}
	if out.Port == 0 {
		out.Port = defaults.Port
	}
	return out
}

// Flags returns the standard connection flags for the parameters that are set.
func (p ConnParams) Flags() []string {
	var args []string
	if p.Username != "" {
		args = append(args, "--username", p.Username)
	}
	if p.Host != "" {
		args = append(args, "--host", p.Host)
	}
	if p.Port != 0 {
		args = append(args, "--port", strconv.Itoa(p.Port))
	}
	return args
}

// Env returns environment entries carrying credential material.
func (p ConnParams) Env() []string {
	if p.Password == "" {
		return nil
	}
	return []string{"PGPASSWORD=" + p.Password}
}
