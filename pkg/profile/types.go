package profile

// Profile is the root object of a dockertester.yaml file. It describes the disposable containers
// a project needs for its tests.
type Profile struct {
	APIVersion string          `mapstructure:"apiVersion" validate:"required,eq=v1"`
	Kind       string          `mapstructure:"kind" validate:"required,eq=Profile"`
	StateFile  string          `mapstructure:"stateFile" validate:"required"`
	Postgres   PostgresSpec    `mapstructure:"postgres"`
	Containers []ContainerSpec `mapstructure:"containers" validate:"dive"`
}

// PostgresSpec configures the disposable Postgres database.
type PostgresSpec struct {
	Image         string `mapstructure:"image" validate:"required"`
	Migrations    string `mapstructure:"migrations" validate:"required"`
	MaxConns      int32  `mapstructure:"maxConns" validate:"min=1,max=100"`
	ReadyAttempts int    `mapstructure:"readyAttempts" validate:"min=1,max=60"`
	SessionLock   bool   `mapstructure:"sessionLock"`
}

// ContainerSpec is an extra container started next to Postgres, e.g. a cache or a broker.
// Env entries use the docker run form KEY=VALUE.
type ContainerSpec struct {
	Name     string   `mapstructure:"name" validate:"required"`
	Image    string   `mapstructure:"image" validate:"required"`
	Port     string   `mapstructure:"port" validate:"required"`
	HostPort int      `mapstructure:"hostPort" validate:"min=0,max=65535"`
	Env      []string `mapstructure:"env"`
}
