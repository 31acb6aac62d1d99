package scaffold

//
// PROJECT TEMPLATES
//

var projectTemplate = `name: %s
git_url: %s
sanitizers:
  - address
`

var dockerTemplate = `FROM fuzzops/base-libfuzzer
MAINTAINER your@email.com
RUN apt-get update && apt-get install -y make autoconf automake libtool
RUN git clone %s
COPY build.sh /src/
`

var buildTemplate = `#!/bin/bash -eu

cd /src/%s

# build the library.
# e.g.
#
# ./autogen.sh
# ./configure
# make clean all

# build your fuzzer(s)
# e.g.
# $CXX $CXXFLAGS -std=c++11 -Iinclude \
#     /path/to/name_of_fuzzer.cc -o /out/name_of_fuzzer \
#     -lfuzzer /path/to/library.a $FUZZER_LDFLAGS
`
