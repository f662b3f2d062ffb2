package qsub

import "text/template"

type steeringParams struct {
	Seed1    int
	Seed2    int
	Particle int
	Energy   int
}

type scriptParams struct {
	Seed1  int
	Seed2  int
	Queue  string
	RunDir string
}

// Steering file for a single fixed-energy vertical shower. Matches the
// HiSPARC production configuration: Amsterdam magnetic field, ground
// observation level, EGS4 electromagnetic interactions.
var steeringTemplate = template.Must(template.New("input-hisparc").Parse(
	`RUNNR     0                        run number
EVTNR     1                        number of first shower event
SEED      {{.Seed1}}   0   0          seed for 1. random number sequence (hadron shower)
SEED      {{.Seed2}}   0   0          seed for 2. random number sequence (EGS4)
SEED      3   0   0                seed for 3. random number sequence (Cherenkov)
SEED      4   0   0                seed for 4. random number sequence (IACT)
SEED      5   0   0                seed for 5. random number sequence (NUPRIM)
SEED      6   0   0                seed for 6. random number sequence (PARALLEL)
NSHOW     1                        number of showers to generate
PRMPAR    {{.Particle}}               particle type of primary particle
ERANGE    1.E{{.Energy}}  1.E{{.Energy}} energy range of primary particle (GeV)
ESLOPE    -2.7                     slope of primary energy spectrum (E^y)
THETAP    0.   0.                  range of zenith angle (degree)
PHIP      0.   0.                  range of azimuth angle (degree)
FIXCHI    0.                       starting altitude (g/cm**2)
FIXHEI    0.   0                   height and target type of first interaction (cm)
MAGNET    18.908 45.261            magnetic field in Amsterdam (uT)
HADFLG    0  0  0  0  0  2         flags hadr.interact.&fragmentation
ELMFLG    T   T                    em. interaction flags (NKG,EGS)
STEPFC    1.0                      mult. scattering step length fact.
RADNKG    1000.E2                  outer radius for NKG lat.dens.distr. (cm)
ECUTS     0.3  0.3  0.003  0.003   energy cuts (GeV, hadrons, muons, electrons, photons)
LONGI     T  10.  T  T             longit.distr. & step size & fit & out
MUMULT    T                        muon multiple scattering angle
MUADDI    F                        additional info for muons
OBSLEV    10.E2                    observation level (cm)
MAXPRT    1                        max. number of printed events
ECTMAP    1.E4                     cut on gamma factor for printout
DIRECT    ./                       output directory
USER      hisparc                  user
DEBUG     F  6  F  1000000         debug flag and log.unit for out
EXIT                               terminates input
`))

// Submission wrapper. Writes the actual cluster job to a temp file,
// hands it to qsub, and moves the finished run into the data tree.
var scriptTemplate = template.Must(template.New("run.sh").Parse(
	`#!/usr/bin/env bash

NAME="his_{{.Seed1}}_{{.Seed2}}"
SCRIPT=/tmp/$NAME

cat >> $SCRIPT << EOF
#!/usr/bin/env bash
export PATH=\${PBS_O_PATH}

/usr/bin/time -o time.log ./corsika74000Linux_QGSII_gheisha < input-hisparc > corsika-output.log

find -type l -delete
cd ../..
mv {{.RunDir}} data/
EOF

chmod ug+x $SCRIPT

qsub -N ${NAME} -q {{.Queue}} -V -j oe -d {{.RunDir}} $SCRIPT

rm $SCRIPT
`))
