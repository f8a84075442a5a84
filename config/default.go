package config

// DefaultVars doesnt have a default value in the strict sense: they depend
// on the environment / deployment and are expected to be overridden
const DefaultVars = `
# PathRWData is the path where the service stores its runtime data
PathRWData = "/tmp/aggkit-prover"

# NetworkID is the rollup network this prover generates proofs for
NetworkID = 1

# AggchainVKeySelector identifies the aggchain verification key in use
AggchainVKeySelector = "0x0001"
`

// DefaultValues is the default configuration
const DefaultValues = `
[Log]
Environment = "development" # "production" or "development"
Level = "info"
Outputs = ["stderr"]

[ProofService]
NetworkID = {{NetworkID}}
DBPath = "{{PathRWData}}/aggchainproofs.sqlite"
AggchainVKeySelector = "{{AggchainVKeySelector}}"
MaxConcurrentProofs = 4
ProvingTimeout = "1h"

[RPC]
Host = "0.0.0.0"
Port = 5576
ReadTimeout = "2s"
WriteTimeout = "2s"
MaxRequestsPerIPAndSecond = 500

[Health]
Address = "0.0.0.0:5577"
`
