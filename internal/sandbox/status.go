package sandbox

// Phase names a step of the preview lifecycle.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseBooting    Phase = "booting"
	PhaseMounting   Phase = "mounting"
	PhaseInstalling Phase = "installing"
	PhaseStarting   Phase = "starting"
	PhaseReady      Phase = "ready"
	PhaseError      Phase = "error"
)

// Status is one of Idle, Booting, Mounting, Installing, Starting, Ready or Failed.
// Only Ready carries a URL and only Failed carries a message.
type Status interface {
	Phase() Phase
	isStatus()
}

type (
	Idle       struct{}
	Booting    struct{}
	Mounting   struct{}
	Installing struct{}
	Starting   struct{}
	Ready      struct{ URL string }
	Failed     struct{ Message string }
)

func (Idle) Phase() Phase       { return PhaseIdle }
func (Booting) Phase() Phase    { return PhaseBooting }
func (Mounting) Phase() Phase   { return PhaseMounting }
func (Installing) Phase() Phase { return PhaseInstalling }
func (Starting) Phase() Phase   { return PhaseStarting }
func (Ready) Phase() Phase      { return PhaseReady }
func (Failed) Phase() Phase     { return PhaseError }

func (Idle) isStatus()       {}
func (Booting) isStatus()    {}
func (Mounting) isStatus()   {}
func (Installing) isStatus() {}
func (Starting) isStatus()   {}
func (Ready) isStatus()      {}
func (Failed) isStatus()     {}
